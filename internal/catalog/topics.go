package catalog

var topics = []PromptTopic{
	{
		Name:  "Treatment Options",
		Icon:  "pill",
		Color: "blue",
		PromptSets: []PromptSet{
			{
				{
					Title:     "GLP-1 Receptor Agonists",
					Prompt:    "What are the latest clinical trial results for GLP-1 receptor agonists like semaglutide and tirzepatide for Type 2 diabetes management? Include any 2024 studies.",
					Rationale: "Stay updated on cutting-edge diabetes treatments",
					Category:  CategoryResearch,
					Priority:  PriorityHigh,
					Tags:      []string{"diabetes-drugs", "weight-loss", "time-sensitive"},
				},
				{
					Title:     "Combination Therapy Options",
					Prompt:    "What combination therapies work best with Metformin for Type 2 diabetes patients with HbA1c above 8%?",
					Rationale: "Explore personalized treatment for better glucose control",
					Category:  CategoryResearch,
					Priority:  PriorityHigh,
					Tags:      []string{"personalized-medicine", "treatment-options"},
				},
				{
					Title:     "Insulin Therapy Timing",
					Prompt:    "Given my current HbA1c of 8.2% and frequent hypoglycemic episodes, when should I consider adding insulin therapy?",
					Rationale: "Determine optimal timing for insulin initiation",
					Category:  CategoryPersonalized,
					Priority:  PriorityCritical,
					Tags:      []string{"insulin-therapy", "time-sensitive", "hypoglycemia"},
				},
			},
			{
				{
					Title:     "Continuous Glucose Monitoring",
					Prompt:    "How can continuous glucose monitors (CGMs) help improve diabetes management and reduce hypoglycemic episodes?",
					Rationale: "Explore technology-driven glucose monitoring",
					Category:  CategoryResearch,
				},
				{
					Title:     "SGLT-2 Inhibitors Benefits",
					Prompt:    "What are the cardiovascular and kidney benefits of SGLT-2 inhibitors for Type 2 diabetes patients with hypertension?",
					Rationale: "Understand multi-system benefits beyond glucose control",
					Category:  CategoryPlanning,
				},
				{
					Title:     "Personalized Diabetes Management",
					Prompt:    "How can my specific health profile (age 45, hypertension, neuropathy) guide personalized diabetes treatment decisions?",
					Rationale: "Leverage your unique health status for optimal care",
					Category:  CategoryPersonalized,
				},
			},
			{
				{
					Title:     "Diabetes Technology Integration",
					Prompt:    "What are the latest advances in diabetes management technology, including smart insulin pens and automated dosing systems?",
					Rationale: "Understand modern diabetes management tools",
					Category:  CategoryResearch,
				},
				{
					Title:     "Natural Diabetes Management",
					Prompt:    "What evidence-based natural supplements and lifestyle interventions can complement diabetes medications?",
					Rationale: "Learn about holistic diabetes management approaches",
					Category:  CategoryResearch,
				},
				{
					Title:     "Diabetes Monitoring Optimization",
					Prompt:    "What blood glucose testing schedule and targets are recommended for Type 2 diabetes patients on multiple medications?",
					Rationale: "Optimize monitoring for better control",
					Category:  CategoryActionable,
				},
			},
		},
	},
	{
		Name:  "Blood Sugar Management",
		Icon:  "brain",
		Color: "purple",
		PromptSets: []PromptSet{
			{
				{
					Title:     "Hypoglycemia Prevention",
					Prompt:    "What strategies can prevent frequent hypoglycemic episodes in Type 2 diabetes patients on Metformin?",
					Rationale: "Better understand and prevent dangerous low blood sugars",
					Category:  CategoryResearch,
					Priority:  PriorityHigh,
					Tags:      []string{"hypoglycemia", "prevention"},
				},
				{
					Title:     "HbA1c Optimization",
					Prompt:    "How can I safely lower my HbA1c from 8.2% to target range without increasing hypoglycemic risk?",
					Rationale: "Achieve better glucose control safely",
					Category:  CategoryResearch,
					Priority:  PriorityModerate,
					Tags:      []string{"glucose-control", "optimization"},
				},
				{
					Title:     "Lifestyle Modifications",
					Prompt:    "What evidence-based lifestyle changes can improve blood sugar control in Type 2 diabetes patients?",
					Rationale: "Implement non-pharmaceutical interventions",
					Category:  CategoryActionable,
					Priority:  PriorityModerate,
					Tags:      []string{"lifestyle", "prevention"},
				},
			},
			{
				{
					Title:     "Emergency Glucose Management",
					Prompt:    "What emergency supplies should I have available for severe hypoglycemia, and when exactly should I use them?",
					Rationale: "Prepare for diabetes emergencies effectively",
					Category:  CategoryActionable,
					Priority:  PriorityCritical,
					Tags:      []string{TagEmergencyCare, TagLifesavingDrugs, "hypoglycemia"},
				},
				{
					Title:     "Sleep and Blood Sugar",
					Prompt:    "How does sleep quality affect blood sugar control in diabetes patients, and what sleep strategies can help?",
					Rationale: "Optimize sleep for better glucose control",
					Category:  CategoryActionable,
				},
				{
					Title:     "Blood Sugar Tracking Apps",
					Prompt:    "What digital tools and smartphone apps can help me track and predict blood sugar patterns more effectively?",
					Rationale: "Use technology to improve diabetes management",
					Category:  CategoryActionable,
				},
			},
			{
				{
					Title:     "Diabetic Diet Planning",
					Prompt:    "What meal planning strategies and carbohydrate counting methods work best for Type 2 diabetes management?",
					Rationale: "Explore nutritional approaches to glucose control",
					Category:  CategoryResearch,
				},
				{
					Title:     "Stress and Blood Sugar",
					Prompt:    "What stress reduction techniques are most effective for improving blood sugar control in diabetes patients?",
					Rationale: "Address psychological factors affecting glucose",
					Category:  CategoryActionable,
				},
				{
					Title:     "Exercise and Diabetes Safety",
					Prompt:    "What types of exercise are safe and beneficial for someone with Type 2 diabetes and frequent hypoglycemia?",
					Rationale: "Maintain fitness while managing diabetes safely",
					Category:  CategoryActionable,
				},
			},
		},
	},
	{
		Name:  "Complication Prevention",
		Icon:  "activity",
		Color: "green",
		PromptSets: []PromptSet{
			{
				{
					Title:     "Diabetic Neuropathy Management",
					Prompt:    "What are the most effective treatments for diabetic neuropathy causing tingling in feet, and how can progression be prevented?",
					Rationale: "Address current neuropathy symptoms and prevent worsening",
					Category:  CategoryResearch,
					Priority:  PriorityCritical,
					Tags:      []string{"neuropathy", "time-sensitive"},
				},
				{
					Title:     "Kidney Protection Strategies",
					Prompt:    "How can I protect my kidney function with current eGFR of 78 mL/min while managing diabetes and hypertension?",
					Rationale: "Prevent diabetic kidney disease progression",
					Category:  CategoryActionable,
					Priority:  PriorityCritical,
					Tags:      []string{"kidney-protection", "prevention", "time-sensitive"},
				},
				{
					Title:     "Eye Exam Preparation",
					Prompt:    "What should I expect during my upcoming diabetic eye exam, and what signs of diabetic retinopathy should I watch for?",
					Rationale: "Prepare for comprehensive eye screening",
					Category:  CategoryPlanning,
				},
			},
			{
				{
					Title:     "Cardiovascular Risk Reduction",
					Prompt:    "What strategies can reduce cardiovascular risk in diabetes patients with hypertension and elevated cholesterol?",
					Rationale: "Address heart disease prevention comprehensively",
					Category:  CategoryResearch,
				},
				{
					Title:     "Foot Care Prevention",
					Prompt:    "What daily foot care routine should diabetes patients with neuropathy follow to prevent complications?",
					Rationale: "Prevent serious foot complications",
					Category:  CategoryActionable,
				},
				{
					Title:     "Blood Pressure Management",
					Prompt:    "How should blood pressure targets differ for diabetes patients, and is my current Lisinopril dose optimal?",
					Rationale: "Optimize blood pressure control for diabetes",
					Category:  CategoryActionable,
				},
			},
			{
				{
					Title:     "Diabetes Care Coordination",
					Prompt:    "How should my primary care doctor, endocrinologist, and other specialists coordinate my diabetes care?",
					Rationale: "Ensure comprehensive team-based care",
					Category:  CategoryActionable,
				},
				{
					Title:     "Medication Side Effects",
					Prompt:    "What are the potential side effects of my current diabetes medications, and when should I be concerned?",
					Rationale: "Understand medication safety and monitoring",
					Category:  CategoryPlanning,
				},
				{
					Title:     "Long-term Diabetes Planning",
					Prompt:    "What long-term health monitoring and preventive care is recommended for Type 2 diabetes patients?",
					Rationale: "Plan for comprehensive long-term diabetes care",
					Category:  CategoryPlanning,
				},
			},
		},
	},
	{
		Name:  "Diabetes Genetics",
		Icon:  "file-text",
		Color: "indigo",
		PromptSets: []PromptSet{
			{
				{
					Title:     "Type 2 Diabetes Risk Factors",
					Prompt:    "What genetic and environmental factors contribute to Type 2 diabetes development and progression?",
					Rationale: "Understand your diabetes risk profile",
					Category:  CategoryResearch,
				},
				{
					Title:     "Family History Impact",
					Prompt:    "How does family history of diabetes affect my treatment options and risk for complications?",
					Rationale: "Leverage family health history for better care",
					Category:  CategoryResearch,
				},
				{
					Title:     "Hereditary Risk Assessment",
					Prompt:    "What screening recommendations exist for my family members given my Type 2 diabetes diagnosis?",
					Rationale: "Consider family diabetes prevention",
					Category:  CategoryPreventive,
				},
			},
			{
				{
					Title:     "Genetic Testing for Diabetes",
					Prompt:    "What genetic tests are available to better understand my diabetes subtype and medication response?",
					Rationale: "Stay current with diabetes genetic testing",
					Category:  CategoryResearch,
				},
				{
					Title:     "Personalized Medicine",
					Prompt:    "How can genetic factors guide personalized diabetes treatment and medication selection?",
					Rationale: "Understand genetic influences on treatment",
					Category:  CategoryResearch,
				},
				{
					Title:     "Family Diabetes Prevention",
					Prompt:    "What prevention strategies should my family members consider based on my diabetes diagnosis?",
					Rationale: "Help family members prevent diabetes",
					Category:  CategoryPreventive,
				},
			},
			{
				{
					Title:     "Pharmacogenomics for Diabetes",
					Prompt:    "How might my genetics affect how I respond to different diabetes medications like Metformin?",
					Rationale: "Optimize medication selection through genetics",
					Category:  CategoryResearch,
				},
				{
					Title:     "Diabetes Medication Genetics",
					Prompt:    "What genetic factors influence the effectiveness of GLP-1 agonists and SGLT-2 inhibitors?",
					Rationale: "Personalize diabetes medication choices",
					Category:  CategoryPersonalized,
				},
				{
					Title:     "Research Participation",
					Prompt:    "How can I contribute to diabetes research that might help other patients with similar genetic backgrounds?",
					Rationale: "Support diabetes research while potentially benefiting",
					Category:  CategoryOpportunities,
				},
			},
		},
	},
	{
		Name:  "Quality of Life",
		Icon:  "user",
		Color: "amber",
		PromptSets: []PromptSet{
			{
				{
					Title:     "Diabetes and Mental Health",
					Prompt:    "How can I manage diabetes-related stress, anxiety, and depression while maintaining good glucose control?",
					Rationale: "Address psychological aspects of diabetes",
					Category:  CategoryResearch,
				},
				{
					Title:     "Work-Life Balance",
					Prompt:    "How do other diabetes patients manage career demands while dealing with glucose monitoring and medication schedules?",
					Rationale: "Learn from patient experiences",
					Category:  CategoryCommunity,
				},
				{
					Title:     "Long-term Planning",
					Prompt:    "What should I consider for long-term life planning with Type 2 diabetes and potential complications?",
					Rationale: "Make informed decisions about the future",
					Category:  CategoryPlanning,
				},
			},
			{
				{
					Title:     "Relationship Management",
					Prompt:    "How can I maintain healthy relationships and communicate effectively about my diabetes with family and friends?",
					Rationale: "Strengthen your support network",
					Category:  CategoryCommunity,
				},
				{
					Title:     "Diabetes Burnout",
					Prompt:    "What strategies help prevent and overcome diabetes burnout and management fatigue?",
					Rationale: "Address psychological challenges of chronic disease",
					Category:  CategoryActionable,
				},
				{
					Title:     "Independence Strategies",
					Prompt:    "What strategies can help me maintain independence while managing diabetes complications like neuropathy?",
					Rationale: "Preserve quality of life and self-determination",
					Category:  CategoryActionable,
				},
			},
			{
				{
					Title:     "Travel and Recreation",
					Prompt:    "What precautions and preparations should I consider for travel and recreational activities with diabetes?",
					Rationale: "Maintain an active and fulfilling lifestyle",
					Category:  CategoryActionable,
				},
				{
					Title:     "Financial Planning",
					Prompt:    "What financial considerations and resources should I be aware of for managing long-term diabetes care costs?",
					Rationale: "Plan for financial stability with chronic disease",
					Category:  CategoryPlanning,
				},
				{
					Title:     "Advocacy and Support Groups",
					Prompt:    "How can I connect with other diabetes patients and advocacy organizations for support and information?",
					Rationale: "Build community and find peer support",
					Category:  CategoryCommunity,
				},
			},
		},
	},
	{
		Name:  "Latest Research",
		Icon:  "trending-up",
		Color: "red",
		PromptSets: []PromptSet{
			{
				{
					Title:     "2024 Diabetes Breakthroughs",
					Prompt:    "What are the most significant diabetes research breakthroughs and treatment advances published in 2024?",
					Rationale: "Stay current with diabetes medical advances",
					Category:  CategoryResearch,
				},
				{
					Title:     "Clinical Trial Opportunities",
					Prompt:    "What diabetes clinical trials are currently recruiting patients with Type 2 diabetes and my specific complications?",
					Rationale: "Access cutting-edge diabetes treatments",
					Category:  CategoryOpportunities,
				},
				{
					Title:     "Diabetes Technology Advances",
					Prompt:    "What new diabetes monitoring and treatment technologies are being studied for better glucose management?",
					Rationale: "Understand emerging diabetes technology",
					Category:  CategoryResearch,
				},
			},
			{
				{
					Title:     "Artificial Intelligence in Diabetes",
					Prompt:    "How is AI being used to improve diabetes diagnosis, treatment planning, and glucose prediction?",
					Rationale: "Explore technology-driven diabetes advances",
					Category:  CategoryResearch,
				},
				{
					Title:     "International Diabetes Research",
					Prompt:    "What major international diabetes research initiatives are studying Type 2 diabetes complications, and how might I benefit?",
					Rationale: "Access global diabetes research opportunities",
					Category:  CategoryOpportunities,
				},
				{
					Title:     "Precision Diabetes Medicine",
					Prompt:    "What precision medicine approaches are being developed specifically for patients with my diabetes profile?",
					Rationale: "Find treatments tailored to your specific diabetes characteristics",
					Category:  CategoryResearch,
				},
			},
			{
				{
					Title:     "Novel Diabetes Drug Targets",
					Prompt:    "What new drug targets and mechanisms are being investigated for Type 2 diabetes beyond current therapies?",
					Rationale: "Learn about future diabetes treatment possibilities",
					Category:  CategoryResearch,
				},
				{
					Title:     "Diabetes Cure Research",
					Prompt:    "What promising research is being conducted toward finding a cure for Type 2 diabetes?",
					Rationale: "Stay informed about potential breakthrough treatments",
					Category:  CategoryResearch,
				},
				{
					Title:     "Quality of Life Research",
					Prompt:    "What recent research focuses on improving quality of life and long-term outcomes for diabetes patients?",
					Rationale: "Find evidence-based approaches to living well with diabetes",
					Category:  CategoryResearch,
				},
			},
		},
	},
}
